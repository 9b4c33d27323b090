package sshexec

import "strings"

// InfoField is one labeled piece of system information.
type InfoField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// infoCommands are probed in order; failures are recorded, not fatal.
var infoCommands = []struct {
	label   string
	command string
}{
	{"hostname", "hostname"},
	{"uptime", "uptime"},
	{"disk_usage", "df -h /"},
	{"memory", "free -h"},
	{"cpu_info", "lscpu | head -10"},
	{"current_dir", "pwd"},
	{"user", "whoami"},
}

// SystemInfo collects basic information about the remote host. Commands
// that fail contribute an "Error: …" value instead of aborting the probe.
func (c *Client) SystemInfo() []InfoField {
	fields := make([]InfoField, 0, len(infoCommands))

	for _, probe := range infoCommands {
		res, err := c.Execute(probe.command)

		value := strings.TrimSpace(res.Stdout)

		switch {
		case err != nil:
			value = "Error: " + err.Error()
		case res.ExitCode != 0:
			value = "Error: " + strings.TrimSpace(res.Stderr)
		}

		fields = append(fields, InfoField{Label: probe.label, Value: value})
	}

	return fields
}
