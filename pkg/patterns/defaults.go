package patterns

// Boundaries used by GitHub secret scanning when a pattern has no start or end.
const (
	DefaultStart = `\A|[^0-9A-Za-z]`
	DefaultEnd   = `\z|[^0-9A-Za-z]`
)

// Defaults is the boundary configuration injected when documents are loaded.
type Defaults struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// DefaultBoundaries returns the secret scanning default boundaries.
func DefaultBoundaries() Defaults {
	return Defaults{Start: DefaultStart, End: DefaultEnd}
}

// orDefault fills empty fields of d from DefaultBoundaries.
func (d Defaults) orDefault() Defaults {
	def := DefaultBoundaries()
	if d.Start == "" {
		d.Start = def.Start
	}
	if d.End == "" {
		d.End = def.End
	}
	return d
}
