package channels

// webChatHTML is the single-page UI. Bot replies arrive pre-rendered in the
// "html" field of each message; user text is always inserted as text.
var webChatHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
<style>
:root{
  --bg-primary:#ffffff;--bg-secondary:#f3f4f6;--border:#e5e7eb;
  --accent:#0d9488;--accent-hover:#0f766e;--accent-soft:#14b8a6;
  --text-primary:#111827;--text-muted:#6b7280;--code-bg:#d1d5db;
  --radius:16px;
}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{
  font-family:system-ui,-apple-system,sans-serif;background:var(--bg-secondary);
  color:var(--text-primary);display:flex;justify-content:center;
}
#app{
  display:flex;flex-direction:column;height:100vh;width:100%;max-width:56rem;
  background:var(--bg-primary);box-shadow:0 10px 15px rgba(0,0,0,.1);
}
#header{
  background:var(--accent);color:#fff;padding:16px;display:flex;align-items:center;gap:12px;
}
.logo{
  width:48px;height:48px;border-radius:50%;background:var(--accent-soft);
  display:flex;align-items:center;justify-content:center;flex-shrink:0;
}
.logo svg{width:24px;height:24px}
#header h1{font-size:20px;font-weight:600}
#header .subtitle{font-size:14px;opacity:.8}
.header-actions{margin-left:auto;display:flex;gap:8px}
.header-actions a,.header-actions button{
  color:#fff;background:none;border:1px solid rgba(255,255,255,.5);border-radius:8px;
  padding:6px 10px;font-size:12px;cursor:pointer;text-decoration:none;font-family:inherit;
}
#messages{flex:1;overflow-y:auto;padding:16px;display:flex;flex-direction:column;gap:16px}
#empty-state{text-align:center;color:var(--text-muted);margin-top:32px}
#empty-state .big{font-size:18px;font-weight:500;margin-bottom:4px}
#empty-state .small{font-size:14px}
.row{display:flex}
.row.user{justify-content:flex-end}
.row.bot{justify-content:flex-start}
.bubble{max-width:75%;padding:10px 14px;border-radius:var(--radius);font-size:14px;line-height:1.5;word-wrap:break-word}
.row.user .bubble{background:var(--accent);color:#fff;white-space:pre-wrap}
.row.bot .bubble{background:var(--bg-secondary);color:var(--text-primary)}
.row.bot .bubble.failed{border:1px solid #fca5a5}
.bubble p{margin-bottom:8px}
.bubble p:last-of-type{margin-bottom:0}
.bubble code{background:var(--code-bg);padding:2px 4px;border-radius:4px;font-size:12px;font-family:ui-monospace,monospace}
.bubble .time{display:block;font-size:11px;margin-top:4px;opacity:.7}
.typing{display:flex;gap:4px;padding:4px 0}
.typing span{width:8px;height:8px;border-radius:50%;background:var(--text-muted);animation:bounce 1s infinite alternate}
.typing span:nth-child(2){animation-delay:.2s}
.typing span:nth-child(3){animation-delay:.4s}
@keyframes bounce{from{transform:translateY(0);opacity:.4}to{transform:translateY(-4px);opacity:1}}
#input-area{border-top:1px solid var(--border);padding:16px}
form{display:flex;gap:16px}
#input{
  flex:1;padding:12px;border:1px solid #d1d5db;border-radius:var(--radius);resize:none;
  min-height:44px;max-height:120px;font-family:inherit;font-size:14px;outline:none;
}
#input:focus{border-color:var(--accent);box-shadow:0 0 0 2px rgba(13,148,136,.3)}
#send{
  padding:8px 24px;background:var(--accent-soft);color:#fff;border:none;border-radius:var(--radius);cursor:pointer;
}
#send:hover{background:var(--accent-hover)}
#send:disabled{cursor:not-allowed;opacity:.5}
#send svg{width:20px;height:20px}
.session{font-size:12px;color:var(--text-muted);text-align:center;margin-top:8px}
</style>
</head>
<body>
<div id="app">
  <div id="header">
    <div class="logo"><svg fill="none" stroke="currentColor" viewBox="0 0 24 24"><path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M8 10h.01M12 10h.01M16 10h.01M9 16H5a2 2 0 01-2-2V6a2 2 0 012-2h14a2 2 0 012 2v8a2 2 0 01-2 2h-5l-5 4v-4z"/></svg></div>
    <div><h1>{{.Title}}</h1><p class="subtitle">{{.Subtitle}}</p></div>
    <div class="header-actions">
      <a id="export" href="#" title="Download transcript">Export</a>
      <button id="new-chat" type="button" title="Start a new conversation">New chat</button>
    </div>
  </div>
  <div id="messages">
    <div id="empty-state">
      <p class="big">Welcome to ChatBot!</p>
      <p class="small">Send a message to start the conversation</p>
    </div>
  </div>
  <div id="input-area">
    <form id="form">
      <textarea id="input" rows="1" placeholder="Type your message..." aria-label="Chat message input"></textarea>
      <button id="send" type="submit" aria-label="Send message" disabled><svg fill="none" stroke="currentColor" viewBox="0 0 24 24"><path stroke-linecap="round" stroke-linejoin="round" stroke-width="2" d="M12 19l9 2-9-18-9 18 9-2zm0 0v-8"/></svg></button>
    </form>
    <p class="session">Session ID: {{.ShortID}}</p>
  </div>
</div>
<script>
const sessionId = {{.SessionID}};
const msgsEl = document.getElementById("messages"),
      input = document.getElementById("input"),
      btn = document.getElementById("send"),
      form = document.getElementById("form"),
      emptyState = document.getElementById("empty-state");
let busy = false, typingEl = null, ws = null;

document.getElementById("export").href = "/chat/export?format=html&session_id=" + encodeURIComponent(sessionId);
document.getElementById("new-chat").onclick = () => { if (!busy) location.reload(); };

function addMsg(m) {
  if (emptyState && emptyState.parentNode) emptyState.remove();
  const row = document.createElement("div");
  row.className = "row " + (m.role === "user" ? "user" : "bot");
  const bubble = document.createElement("div");
  bubble.className = "bubble" + (m.failed ? " failed" : "");
  if (m.role === "user") {
    const p = document.createElement("p");
    p.textContent = m.text;
    bubble.appendChild(p);
  } else {
    bubble.innerHTML = m.html || "";
  }
  const t = document.createElement("span");
  t.className = "time";
  t.textContent = m.time || "";
  bubble.appendChild(t);
  row.appendChild(bubble);
  msgsEl.insertBefore(row, typingEl);
  msgsEl.scrollTop = msgsEl.scrollHeight;
}

function setBusy(b) {
  busy = b;
  btn.disabled = b || !input.value.trim();
  input.disabled = b;
  if (b && !typingEl) {
    typingEl = document.createElement("div");
    typingEl.className = "row bot";
    typingEl.innerHTML = '<div class="bubble"><div class="typing"><span></span><span></span><span></span></div></div>';
    msgsEl.appendChild(typingEl);
    msgsEl.scrollTop = msgsEl.scrollHeight;
  } else if (!b && typingEl) {
    typingEl.remove();
    typingEl = null;
  }
  if (!b) input.focus();
}

function failMsg(text) {
  addMsg({role: "bot", html: "<p>" + text.replace(/&/g,"&amp;").replace(/</g,"&lt;") + "</p>", time: "", failed: true});
}

async function sendHTTP(text) {
  addMsg({role: "user", text: text, time: new Date().toLocaleTimeString([], {hour: "2-digit", minute: "2-digit"})});
  setBusy(true);
  try {
    const r = await fetch("/chat/send", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({session_id: sessionId, text: text})
    });
    const d = await r.json();
    if (!r.ok) throw new Error(d.error || r.statusText);
    addMsg(d.message);
  } catch (e) {
    failMsg("Sorry, there was an error sending your message. Please try again.");
  } finally {
    setBusy(false);
  }
}

function connect() {
  const proto = location.protocol === "https:" ? "wss://" : "ws://";
  const sock = new WebSocket(proto + location.host + "/chat/ws?session_id=" + encodeURIComponent(sessionId));
  sock.onopen = () => { ws = sock; };
  sock.onclose = () => { if (ws === sock) ws = null; if (busy) setBusy(false); };
  sock.onmessage = (e) => {
    const ev = JSON.parse(e.data);
    if (ev.type === "message") addMsg(ev.message);
    else if (ev.type === "typing") setBusy(!!ev.busy);
    else if (ev.type === "error") console.warn(ev.error);
  };
}

function send() {
  const text = input.value;
  if (!text.trim() || busy) return;
  input.value = "";
  input.style.height = "auto";
  if (ws && ws.readyState === WebSocket.OPEN) {
    setBusy(true);
    ws.send(JSON.stringify({text: text}));
  } else {
    sendHTTP(text);
  }
}

form.onsubmit = (e) => { e.preventDefault(); send(); };
input.onkeydown = (e) => { if (e.key === "Enter" && !e.shiftKey) { e.preventDefault(); send(); } };
input.oninput = () => {
  btn.disabled = busy || !input.value.trim();
  input.style.height = "auto";
  input.style.height = Math.min(input.scrollHeight, 120) + "px";
};
connect();
input.focus();
</script>
</body>
</html>`
