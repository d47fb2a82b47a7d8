// Package protocol defines the JSON packet model shared by the wire
// codec, the roles and the rooms. A packet is a flat field map with a
// mandatory "command" field; the field names are fixed by the legacy
// client and must not be renamed.
package protocol

// Inbound commands.
const (
	CmdLogIn    = "logIn"
	CmdJoinGame = "joinGame"
	CmdChat     = "chat"
)

// Outbound commands.
const (
	CmdLogInAck      = "logInAck"
	CmdAssets        = "assets"
	CmdSetPlayer     = "setPlayer"
	CmdPlayer        = "player"
	CmdJoinConfirmed = "game_join_confirmed"
	CmdGameRefresh   = "gameRefresh"
	CmdStartGame     = "startGame"
	CmdChangeTurn    = "changeTurn"
)

// Packet is one application message. Values are whatever encoding/json
// produces: string, float64, bool, nil, []any, map[string]any.
type Packet map[string]any

// Command returns the packet's command field, or "" when absent or not
// a string.
func (p Packet) Command() string {
	cmd, _ := p["command"].(string)
	return cmd
}

// String returns the named field as a string, or "" when absent.
func (p Packet) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the named field truncated to an int. JSON numbers decode
// as float64, so both representations are accepted.
func (p Packet) Int(key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Clone returns a shallow copy, used before per-recipient stamping.
func (p Packet) Clone() Packet {
	out := make(Packet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// New builds a packet with the given command.
func New(command string) Packet {
	return Packet{"command": command}
}
