package intent

// Source records where an intent value came from.
type Source int

// Sources in increasing precedence.
const (
	SourcePredicted Source = iota // local classifier
	SourceVerified                // validation collaborator
	SourcePreserved               // carried over from a recalled selection
)

func (s Source) String() string {
	switch s {
	case SourcePredicted:
		return "predicted"
	case SourceVerified:
		return "verified"
	case SourcePreserved:
		return "preserved"
	default:
		return "unknown"
	}
}

// Signal is one candidate intent together with its provenance.
type Signal struct {
	Value  Intent
	Source Source
}

func Predicted(v Intent) Signal { return Signal{Value: v, Source: SourcePredicted} }
func Verified(v Intent) Signal  { return Signal{Value: v, Source: SourceVerified} }
func Preserved(v Intent) Signal { return Signal{Value: v, Source: SourcePreserved} }

// Resolve picks the signal with the highest precedence
// (Preserved > Verified > Predicted). Empty or unknown values are skipped;
// with nothing usable the result is General.
func Resolve(signals ...Signal) Intent {
	best := Signal{Value: General, Source: -1}
	for _, s := range signals {
		if !s.Value.Valid() {
			continue
		}
		if s.Source > best.Source {
			best = s
		}
	}
	return best.Value
}
