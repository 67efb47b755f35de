package screen

import "strings"

// Commands accepted outside the welcome menu.
const (
	CmdStartOver = "SO"
	CmdQuit      = "Q"
	CmdPrevious  = "P"
	CmdBack      = "B"
	CmdDisplay   = "D"
	CmdPrevTitle = "PT"
	CmdNextTitle = "NT"
)

func trim(s string) string { return strings.TrimSpace(s) }

func upper(s string) string { return strings.ToUpper(s) }

func isStartOver(cmd string) bool { return cmd == CmdStartOver || cmd == CmdQuit }

func isBack(cmd string) bool { return cmd == CmdPrevious || cmd == CmdBack }

func isDigits(cmd string) bool {
	if cmd == "" {
		return false
	}
	for _, r := range cmd {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
