package diag

type Note struct {
	Module string
	Msg    string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Module   string // stable textual identity of the module, if known
	ActionID string
	Route    string
	Notes    []Note
}

func New(sev Severity, code Code, module, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Module:   module,
		Message:  msg,
	}
}

func NewError(code Code, module, msg string) Diagnostic {
	return New(SevError, code, module, msg)
}

func (d Diagnostic) WithNote(module, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Module: module, Msg: msg})
	return d
}

func (d Diagnostic) WithAction(id string) Diagnostic {
	d.ActionID = id
	return d
}

func (d Diagnostic) WithRoute(route string) Diagnostic {
	d.Route = route
	return d
}
