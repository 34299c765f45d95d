// Package logging provides structured logging with per-module log levels.
//
// Logs go to stdout (text or JSON) when it is connected and to the systemd
// journal when journald is available, or both.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"gpio": "debug"},
//	})
//	logger := logging.GetLogger("control")
//	logger.Info("power on", "reason", "schedule")
//
// Journal entries carry the module as a field:
//
//	journalctl -t relay-lights MODULE=sunset
package logging
