package run

// ListOptions provides filtering options for listing runs.
type ListOptions struct {
	Status *Status
	Limit  int
	Offset int
}
