package role

// Avatar is the physics collaborator attached to a game-role player.
// Collision resolution and weapon effects live outside this core; the
// session layer only places avatars and hands their state to packets.
type Avatar struct {
	X, Y        float64
	initialized bool
}

// Initialize prepares the avatar for a match. Runs once per login.
func (a *Avatar) Initialize() {
	a.initialized = true
}

// Ready reports whether Initialize has run.
func (a *Avatar) Ready() bool { return a.initialized }

// SetPosition places the avatar at a map starting position.
func (a *Avatar) SetPosition(x, y float64) {
	a.X, a.Y = x, y
}
