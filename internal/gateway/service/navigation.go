package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// StatusProvider fetches the promoter's current approval status.
type StatusProvider interface {
	FetchApprovalStatus(ctx context.Context) (*domain.AccountStatus, error)
}

// Pages are the redirect targets the gatekeeper can choose.
type Pages struct {
	Login             string
	ApplicationEntry  string
	AuthenticatedHome string
	PendingResult     string
	FailResult        string
}

var DefaultPages = Pages{
	Login:             "/login",
	ApplicationEntry:  "/apply/personal",
	AuthenticatedHome: "/agent/home",
	PendingResult:     "/result/success",
	FailResult:        "/result/fail",
}

// RouteTable maps a page path to its requirements.
type RouteTable map[string]domain.NavigationRequest

// DefaultRoutes is the promoter onboarding app's route map. Every page not
// listed as public requires a signed-in user.
func DefaultRoutes() RouteTable {
	t := RouteTable{}

	for _, path := range []string{"/", "/login", "/contact-service"} {
		t[path] = domain.NavigationRequest{Path: path}
	}

	for _, path := range []string{
		"/invite-entry",
		"/confirm/personal",
		"/confirm/company",
		"/result/success",
		"/result/fail",
	} {
		t[path] = domain.NavigationRequest{Path: path, RequiresAuth: true}
	}

	for _, path := range []string{"/apply/personal", "/apply/company"} {
		t[path] = domain.NavigationRequest{Path: path, RequiresAuth: true, RequiresStatusCheck: true}
	}

	for _, path := range []string{
		"/agent/home",
		"/agent/invited-users",
		"/agent/income",
		"/agent/withdraw",
		"/agent/withdrawal-history",
		"/agent/promotion/share",
	} {
		t[path] = domain.NavigationRequest{Path: path, RequiresAuth: true, RequiresActive: true}
	}

	t["/agent/team/performance"] = domain.NavigationRequest{
		Path:           "/agent/team/performance",
		RequiresAuth:   true,
		RequiresActive: true,
		RequiresLevel1: true,
	}

	return t
}

// Resolve returns the requirements for path. Unknown paths require auth and
// nothing else. Query strings, fragments and trailing slashes are ignored.
func (t RouteTable) Resolve(path string) domain.NavigationRequest {
	path = normalizePath(path)

	if req, ok := t[path]; ok {
		req.Path = path
		return req
	}
	return domain.NavigationRequest{Path: path, RequiresAuth: true}
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

// Gatekeeper decides whether a navigation may proceed. It holds no state
// between evaluations; the approval status is fetched at most once per
// evaluation and only when a rule needs it.
type Gatekeeper struct {
	Store  store.CredentialStore
	Status StatusProvider
	Pages  Pages
	Routes RouteTable
	Logger *slog.Logger
}

// EvaluatePath resolves path against the route table and evaluates it.
func (g *Gatekeeper) EvaluatePath(ctx context.Context, path string) domain.Decision {
	routes := g.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	return g.Evaluate(ctx, routes.Resolve(path))
}

// Evaluate applies the rules in order; the first that fires decides.
//
// The requires-active and requires-level-1 checks fail closed when the status
// cannot be fetched. The status-check pages fail open.
func (g *Gatekeeper) Evaluate(ctx context.Context, req domain.NavigationRequest) domain.Decision {
	l := slogx.FromContext(ctx, g.Logger)
	pages := g.pages()

	bundle := g.Store.Load(ctx)
	signedIn := bundle != nil && bundle.IDToken != ""

	if req.RequiresAuth && !signedIn {
		return g.redirect(ctx, l, req, pages.Login, "not_signed_in")
	}

	if !signedIn {
		return domain.Allow
	}

	status := g.memoizedStatus()

	if req.RequiresActive {
		s, err := status(ctx)
		if err != nil {
			l.WarnContext(ctx, "navigation_status_failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			return g.redirect(ctx, l, req, pages.Login, "status_unavailable")
		}
		if !s.Status.IsApproved() {
			return g.redirect(ctx, l, req, pages.ApplicationEntry, "not_approved")
		}
	}

	if req.RequiresLevel1 {
		s, err := status(ctx)
		if err != nil {
			l.WarnContext(ctx, "navigation_status_failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			return g.redirect(ctx, l, req, pages.AuthenticatedHome, "status_unavailable")
		}
		if s.Level != domain.LevelOne {
			return g.redirect(ctx, l, req, pages.AuthenticatedHome, "not_level_one")
		}
	}

	if req.RequiresStatusCheck {
		s, err := status(ctx)
		if err != nil {
			l.WarnContext(ctx, "navigation_status_failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			return domain.Allow
		}

		switch s.Status {
		case domain.StatusNotSubmitted:
			return domain.Allow
		case domain.StatusPending:
			return g.redirectUnlessThere(ctx, l, req, pages.PendingResult, "pending")
		case domain.StatusRejected:
			return g.redirectUnlessThere(ctx, l, req, pages.FailResult, "rejected")
		case domain.StatusPassed, domain.StatusActive:
			return g.redirectUnlessThere(ctx, l, req, pages.AuthenticatedHome, "approved")
		case domain.StatusUnknown:
			l.InfoContext(ctx, "navigation_unknown_status", slog.String("status", s.RawStatus))
			return domain.Allow
		}
	}

	return domain.Allow
}

// memoizedStatus returns a fetcher that calls the provider on first use and
// replays that outcome, success or failure, afterwards.
func (g *Gatekeeper) memoizedStatus() func(context.Context) (*domain.AccountStatus, error) {
	var (
		fetched bool
		status  *domain.AccountStatus
		err     error
	)

	return func(ctx context.Context) (*domain.AccountStatus, error) {
		if !fetched {
			fetched = true
			status, err = g.Status.FetchApprovalStatus(ctx)
			if err == nil && status == nil {
				status = &domain.AccountStatus{}
			}
		}
		return status, err
	}
}

func (g *Gatekeeper) redirectUnlessThere(ctx context.Context, l *slog.Logger, req domain.NavigationRequest, target, reason string) domain.Decision {
	if normalizePath(req.Path) == normalizePath(target) {
		return domain.Allow
	}
	return g.redirect(ctx, l, req, target, reason)
}

func (g *Gatekeeper) redirect(ctx context.Context, l *slog.Logger, req domain.NavigationRequest, target, reason string) domain.Decision {
	l.InfoContext(ctx, "navigation_redirect",
		slog.String("from", req.Path),
		slog.String("to", target),
		slog.String("reason", reason),
	)
	return domain.RedirectTo(target)
}

func (g *Gatekeeper) pages() Pages {
	p := g.Pages
	if p.Login == "" {
		p.Login = DefaultPages.Login
	}
	if p.ApplicationEntry == "" {
		p.ApplicationEntry = DefaultPages.ApplicationEntry
	}
	if p.AuthenticatedHome == "" {
		p.AuthenticatedHome = DefaultPages.AuthenticatedHome
	}
	if p.PendingResult == "" {
		p.PendingResult = DefaultPages.PendingResult
	}
	if p.FailResult == "" {
		p.FailResult = DefaultPages.FailResult
	}
	return p
}
