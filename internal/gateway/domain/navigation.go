package domain

// NavigationRequest is a target page plus the requirements attached to it.
type NavigationRequest struct {
	Path                string
	RequiresAuth        bool
	RequiresActive      bool
	RequiresLevel1      bool
	RequiresStatusCheck bool
}

// Decision is the gatekeeper's verdict. The zero value allows the navigation.
type Decision struct {
	Redirect string
}

// Allow lets the navigation proceed.
var Allow = Decision{}

// RedirectTo sends the navigation to path instead.
func RedirectTo(path string) Decision {
	return Decision{Redirect: path}
}

// Allowed reports whether the decision lets the navigation proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

func (d Decision) String() string {
	if d.Allowed() {
		return "allow"
	}
	return "redirect:" + d.Redirect
}
