package web

const stylesheet = `
*{box-sizing:border-box}
body{margin:0;font-family:system-ui,sans-serif;background:#f6f5f2;color:#1d1d1f}
nav{display:flex;gap:.5rem;align-items:center;padding:.75rem 1.5rem;background:#29335c;color:#fff}
nav form{margin:0}
.brand{font-weight:700;margin-right:1rem}
.nav-btn{background:none;border:0;color:#cfd3e6;padding:.4rem .8rem;border-radius:6px;cursor:pointer}
.nav-btn.active{background:#fff;color:#29335c}
main{max-width:1100px;margin:0 auto;padding:1.5rem}
.panel{background:#fff;border-radius:10px;padding:1rem 1.25rem;margin-bottom:1rem;box-shadow:0 1px 3px #0001}
.row{display:flex;gap:.5rem;align-items:center;margin-top:.5rem}
.row input{flex:1}
input,textarea{width:100%;padding:.5rem;border:1px solid #ccc;border-radius:6px;font:inherit}
button,.btn{padding:.5rem 1rem;border:0;border-radius:6px;background:#29335c;color:#fff;cursor:pointer;text-decoration:none}
button:disabled{opacity:.5;cursor:default}
.secondary{background:#669bbc}
.muted{color:#777}
.status{max-width:1100px;margin:1rem auto 0;padding:.6rem 1rem;border-radius:6px}
.status.info{background:#e8eefc}.status.success{background:#e3f4e1}.status.error{background:#fbe3e0}
.excerpt blockquote{white-space:pre-wrap;border-left:4px solid #669bbc;margin:.75rem 0;padding-left:1rem}
.cards{display:grid;grid-template-columns:repeat(auto-fill,minmax(240px,1fr));gap:1rem;margin-bottom:1rem}
.card{background:#fff;border-radius:10px;padding:1rem;box-shadow:0 1px 3px #0001}
.card dd{margin:0 0 .5rem;font-size:.9rem}
.score{display:inline-block;min-width:2.2rem;text-align:center;border-radius:4px;color:#fff;font-weight:600}
.score.high{background:#d64933}.score.medium{background:#f3a712}.score.low{background:#3c9a5f}
.chart{width:100%;height:auto}
.chart .grid{stroke:#e5e5e5}.chart .axis{font-size:11px;fill:#777}
.legend{display:flex;gap:1rem;list-style:none;padding:0}
.swatch{display:inline-block;width:.8rem;height:.8rem;border-radius:2px;margin-right:.3rem}
.characters{display:flex;flex-wrap:wrap;gap:.5rem;margin-bottom:1rem}
.characters form{margin:0}
.character{background:#fff;color:#29335c;border:1px solid #29335c}
.character.active{background:#29335c;color:#fff}
.transcript{background:#fff;border-radius:10px;padding:1rem;height:55vh;overflow-y:auto}
.bubble{max-width:75%;padding:.6rem .9rem;border-radius:12px;margin:.4rem 0}
.bubble.user{margin-left:auto;background:#29335c;color:#fff;white-space:pre-wrap}
.bubble.model{background:#eef0f6}
.bubble.model p{margin:.2rem 0}
.speaker{display:block;font-size:.8rem;color:#555;margin-bottom:.2rem}
`
