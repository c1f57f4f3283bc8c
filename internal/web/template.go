package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/activity-sensor/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Activity Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.fidget { color: #b8860b; }
.sedentary { color: #888; }
.unknown { color: orange; }
.alert { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Activity Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Activity</th><td id="activity" class="{{if .Last}}{{if eq (printf "%s" .Last.Activity) "ACTIVE"}}active{{else if eq (printf "%s" .Last.Activity) "FIDGET"}}fidget{{else}}sedentary{{end}}{{else}}unknown{{end}}">{{if .Last}}{{.Last.Activity}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Sedentary Timer</th><td id="timer">{{if .Last}}{{.Last.TimerSeconds}}s{{else}}&mdash;{{end}}</td></tr>
<tr><th>Smoothed Accel</th><td id="val">{{if .Last}}{{printf "%.3f" .Last.SmoothedAcc}}{{else}}&mdash;{{end}}</td></tr>
<tr><th>Alert</th><td id="alert" class="{{if and .Last .Last.Alert}}alert{{end}}">{{if and .Last .Last.Alert}}ALERT{{else}}no{{end}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Ready</th><td>{{if .Last}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Published</th><td>{{.Counts.Published}}</td></tr>
<tr><th>Parse Errors</th><td>{{.Counts.ParseErrors}}</td></tr>
<tr><th>Backfills</th><td>{{.Counts.Backfills}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Serial Port</th><td>{{.Config.SerialPort}} @ {{.Config.BaudRate}}</td></tr>
<tr><th>Thresholds</th><td>fidget {{printf "%.3f" .Config.ThreshFidget}} / active {{printf "%.3f" .Config.ThreshActive}}</td></tr>
<tr><th>Alert Limit</th><td>{{.Config.AlertLimitSeconds}}s</td></tr>
<tr><th>Fallback Timeout</th><td>{{.Config.FallbackTimeoutSeconds}}s</td></tr>
<tr><th>History Limit</th><td>{{.Config.HistoryLimit}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var activityEl = document.getElementById("activity");
  var timerEl = document.getElementById("timer");
  var valEl = document.getElementById("val");
  var alertEl = document.getElementById("alert");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var es = new EventSource("/events");

  es.onopen = function() { setDot("ok", "live"); };
  es.onerror = function() { setDot("err", "offline"); };

  es.addEventListener("sensor-data", function(e) {
    try {
      var msg = JSON.parse(e.data);
      activityEl.textContent = msg.state;
      activityEl.className =
        msg.state === "ACTIVE" ? "active" :
        msg.state === "FIDGET" ? "fidget" : "sedentary";
      timerEl.textContent = msg.timer + "s";
      valEl.textContent = msg.val.toFixed(3);
      alertEl.textContent = msg.alert ? "ALERT" : "no";
      alertEl.className = msg.alert ? "alert" : "";
    } catch (err) {}
  });
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
