package journal

// ListOptions provides filtering options for listing journal entries.
type ListOptions struct {
	Type   *EntryType
	RunID  *string
	Limit  int
	Offset int
}
