package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/garage-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"pct": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f*100)
	},
	"ms": func(ms int64) string {
		if ms == 0 {
			return "disabled"
		}
		return fmt.Sprintf("%dms", ms)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Garage</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.closed { color: green; font-weight: bold; }
.open { color: #c60; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
button { font-family: monospace; margin-right: 0.5em; }
</style>
</head>
<body>
<h1>Garage<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="{{if eq .DoorState "CLOSED"}}closed{{else if eq .DoorState "OPEN"}}open{{else}}unknown{{end}}">{{.DoorState}}</td></tr>
<tr><th>Opened / Closed</th><td>{{.DoorCounts.Opened}} / {{.DoorCounts.Closed}}</td></tr>
<tr><th>Last command</th><td>{{if .LastCommand}}{{.LastCommand}} at {{.LastCommandAt.UTC.Format "2006-01-02T15:04:05Z"}}{{else}}none{{end}}</td></tr>
<tr><th>Commands</th><td>open {{.Commands.Open}}, stop {{.Commands.Stop}}, close {{.Commands.Close}}, rejected {{.Commands.Rejected}}</td></tr>
</table>
<p>
<button onclick="send('OPEN')">Open</button>
<button onclick="send('STOP')">Stop</button>
<button onclick="send('CLOSE')">Close</button>
</p>

<h2>Cistern</h2>
<table>
{{if .Level}}<tr><th>Fill</th><td id="cistern-pct">{{pct .Level.Percentage}}</td></tr>
<tr><th>Height</th><td id="cistern-height">{{printf "%.3f" .Level.Height}} m</td></tr>
<tr><th>Volume</th><td id="cistern-volume">{{printf "%.0f" .Level.Volume}} l</td></tr>
<tr><th>Measured</th><td>{{.Level.Time.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Fill</th><td id="cistern-pct" class="unknown">no data</td></tr>
<tr><th>Height</th><td id="cistern-height"></td></tr>
<tr><th>Volume</th><td id="cistern-volume"></td></tr>{{end}}
<tr><th>Samples</th><td>{{.Samples.OK}} ok, {{.Samples.Failed}} failed{{if .Samples.LastError}} ({{.Samples.LastError}}){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample</th><td>{{ms .Config.SampleMs}}</td></tr>
<tr><th>Read timeout</th><td>{{ms .Config.ReadTimeout}}</td></tr>
<tr><th>Door poll</th><td>{{ms .Config.WatchMs}}</td></tr>
<tr><th>Debounce</th><td>{{ms .Config.DebounceMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{ms .Config.HeartbeatMs}}</td></tr>
<tr><th>Relay pulse</th><td>{{ms .Config.SettleMs}}</td></tr>
<tr><th>I2C</th><td>{{.Config.I2CDevice}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var doorEl = document.getElementById("door-state");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function setDoor(state) {
    doorEl.textContent = state;
    doorEl.className = state === "CLOSED" ? "closed" : state === "OPEN" ? "open" : "unknown";
  }

  function setLevel(c) {
    if (!c) return;
    document.getElementById("cistern-pct").textContent = c.percentage.toFixed(1) + "%";
    document.getElementById("cistern-height").textContent = c.fill_height.toFixed(3) + " m";
    document.getElementById("cistern-volume").textContent = c.volume.toFixed(0) + " l";
  }

  window.send = function(cmd) {
    fetch("/door", { method: "POST", body: cmd });
  };

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.door) setDoor(msg.door.state);
        setLevel(msg.cistern);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and DoorState() methods but the template wants fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		DoorState string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		DoorState: snap.DoorState(),
	}
	return indexTmpl.Execute(w, data)
}
