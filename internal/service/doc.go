// Package service turns desired actuator states into hub service commands.
//
// Each actuator type declares a rule table: for every value its desired
// state can take, an ordered list of rules and a fallback service. A rule
// matches when the delta it looks at is present in the desired state.
// Resolution is first-match-wins in declared order; if no rule matches,
// the fallback service is used. Values declared terminal (readback-only
// values such as "unknown") can never be resolved.
//
// Exactly one Command is produced per resolution. When a desired state
// carries two independent deltas (mute and seek, say) only the
// higher-priority one is applied; the caller issues a second desired
// state for the other.
//
// Resolvers are pure: they read no shared state and perform no I/O.
//
// Usage:
//
//	r := service.NewResolver[Mode, Delta]("media_player").
//	    Terminal(ModeUnknown).
//	    Case(ModeIdle, "turn_on", muteRule, volumeRule)
//	cmd, err := r.Resolve(id, ModeIdle, service.Desired[Mode, Delta]{Value: ModeIdle})
package service
