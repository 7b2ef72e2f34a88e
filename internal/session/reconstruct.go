package session

// Reconstruct replays an entire persisted message history in one pass and
// returns the final view. It is a thin driver over the same reducer the live
// path uses, so the result is identical to feeding the same messages one at
// a time into an Aggregator.
func Reconstruct(messages []Message) View {
	state := NewState()
	for _, msg := range messages {
		state.ApplyMessage(msg)
	}
	return state.Snapshot()
}
