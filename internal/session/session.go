// Package session publishes login-state and active-machine transitions.
//
// Subscribers register explicitly and get back a cancel func; nothing is
// delivered after cancel returns, and the channel is closed.
package session

// LoginState tracks whether the user is logged in to the cloud.
type LoginState struct {
	topic    topic[bool]
	loggedIn bool
}

func NewLoginState(loggedIn bool) *LoginState {
	return &LoginState{topic: topic[bool]{name: "login"}, loggedIn: loggedIn}
}

func (s *LoginState) LoggedIn() bool {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	return s.loggedIn
}

// SubscribeLogin returns a channel of login transitions and its cancel func.
func (s *LoginState) SubscribeLogin() (<-chan bool, func()) {
	return s.topic.subscribe()
}

// SetLoggedIn records the login state and notifies subscribers on change.
func (s *LoginState) SetLoggedIn(loggedIn bool) {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()
	if s.loggedIn == loggedIn {
		return
	}
	s.loggedIn = loggedIn
	s.topic.publishLocked(loggedIn)
}

// Subscribers returns the number of registered subscribers.
func (s *LoginState) Subscribers() int {
	return s.topic.subscribers()
}

// ActiveMachine tracks the machine currently designated as in use.
type ActiveMachine struct {
	topic topic[struct{}]
	id    string
}

func NewActiveMachine(id string) *ActiveMachine {
	return &ActiveMachine{topic: topic[struct{}]{name: "active-machine"}, id: id}
}

// ActiveMachine returns the active machine ID; false when none is designated.
func (a *ActiveMachine) ActiveMachine() (string, bool) {
	a.topic.mu.Lock()
	defer a.topic.mu.Unlock()
	return a.id, a.id != ""
}

// SubscribeActiveMachine returns a channel signalled on every change and its cancel func.
func (a *ActiveMachine) SubscribeActiveMachine() (<-chan struct{}, func()) {
	return a.topic.subscribe()
}

// Select designates id as the active machine. An empty id clears it.
func (a *ActiveMachine) Select(id string) {
	a.topic.mu.Lock()
	defer a.topic.mu.Unlock()
	if a.id == id {
		return
	}
	a.id = id
	a.topic.publishLocked(struct{}{})
}

// Subscribers returns the number of registered subscribers.
func (a *ActiveMachine) Subscribers() int {
	return a.topic.subscribers()
}
