package diag

// Reporter is the minimal sink contract for stages that produce diagnostics.
// Implementations: BagReporter, NopReporter.
type Reporter interface {
	Report(d Diagnostic)
}

// BagReporter пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}

// FuncReporter adapts a function to Reporter.
type FuncReporter func(Diagnostic)

func (f FuncReporter) Report(d Diagnostic) {
	if f != nil {
		f(d)
	}
}
