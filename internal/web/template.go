package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"clock": func(t logic.LocalTime) string {
		if !t.Valid {
			return "not synced"
		}
		return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Relay Lights</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.hot { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.frame span { display: inline-block; width: 12px; height: 12px; margin-right: 2px; border-radius: 50%; background: #ddd; }
.frame span.lit { background: gold; }
</style>
</head>
<body>
{{with .Controller}}
<h1>Relay Lights</h1>

<h2>Lights</h2>
<table>
<tr><th>Time</th><td>{{clock .LocalTime}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Relays</th><td class="{{onOff .RelaysEnabled}}">{{onOff .RelaysEnabled}}</td></tr>
<tr><th>Pattern</th><td>{{.Pattern}}{{if .AllOnActive}} (all on hold){{end}}</td></tr>
<tr><th>Frame</th><td class="frame">{{range $.Lamps}}<span{{if .}} class="lit"{{end}}></span>{{end}}</td></tr>
<tr><th>Speed</th><td>{{.SpeedMs}}ms</td></tr>
<tr><th>Shuffle</th><td>{{onOff .ShuffleEnabled}} (hold {{.HoldSeconds}}s)</td></tr>
</table>

<h2>Schedule</h2>
<table>
<tr><th>Window</th><td>{{.On}}-{{.Off}}</td></tr>
<tr><th>Sunset</th><td>{{onOff .SunsetEnabled}}{{if .Sunset}} ({{.Sunset}}){{end}}, offset {{.SunsetOffsetMin}} min</td></tr>
</table>

<h2>Enclosure</h2>
<table>
<tr><th>Temperature</th><td>{{if .HaveCelsius}}{{printf "%.1f" .Celsius}}°C{{else}}unknown{{end}}</td></tr>
<tr><th>Overheated</th><td{{if .Overheated}} class="hot"{{end}}>{{if .Overheated}}yes{{else}}no{{end}}</td></tr>
<tr><th>Sensor failures</th><td>{{.SensorFailures}}</td></tr>
</table>

<h2>Controls</h2>
<p>
<form method="post" action="/api/mode"><select name="value">{{range $.Modes}}<option{{if eq . $.Controller.Mode}} selected{{end}}>{{.}}</option>{{end}}</select><button>Mode</button></form>
<form method="post" action="/api/pattern"><select name="value">{{range $.Patterns}}<option{{if eq . $.Controller.Pattern}} selected{{end}}>{{.}}</option>{{end}}</select><button>Pattern</button></form>
</p>
<p>
<form method="post" action="/api/speed"><input name="value" size="5" value="{{.SpeedMs}}"><button>Speed (ms)</button></form>
<form method="post" action="/api/hold"><input name="value" size="5" value="{{.HoldSeconds}}"><button>Hold (s)</button></form>
</p>
<p>
<form method="post" action="/api/schedule"><input name="on" size="5" value="{{.On}}"><input name="off" size="5" value="{{.Off}}"><button>Schedule</button></form>
<form method="post" action="/api/sunset/offset"><input name="value" size="4" value="{{.SunsetOffsetMin}}"><button>Offset</button></form>
</p>
<p>
<form method="post" action="/api/sunset"><input type="hidden" name="value" value="{{if .SunsetEnabled}}off{{else}}on{{end}}"><button>Sunset {{if .SunsetEnabled}}off{{else}}on{{end}}</button></form>
<form method="post" action="/api/shuffle"><input type="hidden" name="value" value="{{if .ShuffleEnabled}}off{{else}}on{{end}}"><button>Shuffle {{if .ShuffleEnabled}}off{{else}}on{{end}}</button></form>
<form method="post" action="/api/allon"><button>All on</button></form>
</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	lamps := make([]bool, logic.NumChannels)
	for i := range lamps {
		lamps[i] = snap.Controller.Frame.On(i)
	}
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Lamps    []bool
		Modes    []logic.Mode
		Patterns []logic.Pattern
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Lamps:    lamps,
		Modes:    []logic.Mode{logic.ModeAuto, logic.ModeManualOn, logic.ModeManualOff},
		Patterns: logic.Patterns,
	}
	return indexTmpl.Execute(w, data)
}
