package session

import "time"

// Outcome はセッションの最終結果。
type Outcome string

const (
	OutcomeNoEntitlement Outcome = "no_entitlement"
	OutcomeGifted        Outcome = "gifted"
	OutcomeCooldown      Outcome = "cooldown"
	OutcomeKicked        Outcome = "kicked"
	OutcomeRefused       Outcome = "refused"
	OutcomeFailed        Outcome = "failed"
	OutcomeQuit          Outcome = "quit"
	OutcomeCanceled      Outcome = "canceled"
)

// State はセッションドライバの状態。
type State string

const (
	StateIdle                     State = "idle"
	StateCheckingEntitlement      State = "checking_entitlement"
	StateNoEntitlement            State = "no_entitlement"
	StateConnecting               State = "connecting"
	StateAwaitingLoginSpawn       State = "awaiting_login_spawn"
	StateAwaitingHubSpawn         State = "awaiting_hub_spawn"
	StateAwaitingDestinationSpawn State = "awaiting_destination_spawn"
	StateMenuInteraction          State = "menu_interaction"
	StateDisconnected             State = "disconnected"
	StateReconnecting             State = "reconnecting"
	StateTerminal                 State = "terminal"
)

// Status はステータスAPI向けのセッションのスナップショット。
type Status struct {
	Username     string    `json:"username"`
	State        State     `json:"state"`
	Host         string    `json:"host,omitempty"`
	Tier         string    `json:"tier,omitempty"`
	Outcome      Outcome   `json:"outcome,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Connections  int       `json:"connections"`
	Reconnects   int       `json:"reconnects"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
