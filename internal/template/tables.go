package template

import (
	"strings"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
)

// Guidance is a labelled piece of type-specific implementation advice.
type Guidance struct {
	Label string
	Text  string
}

// Responsibilities returns what a component of type t owns.
func Responsibilities(t diagram.ComponentType) []string {
	switch t {
	case diagram.Frontend:
		return []string{
			"Render the user interface and manage client-side state",
			"Call backend APIs through a single typed client module",
			"Validate user input before submitting it",
			"Handle loading, empty, and error states for every view",
		}
	case diagram.Backend:
		return []string{
			"Expose the application API and enforce its contract",
			"Own business rules and input validation",
			"Coordinate access to storage, auth, and external services",
			"Return consistent, structured error responses",
		}
	case diagram.Storage:
		return []string{
			"Persist application data durably",
			"Own the schema and its migrations",
			"Enforce integrity with constraints and indexes",
		}
	case diagram.Auth:
		return []string{
			"Authenticate users and issue session credentials",
			"Verify tokens for other components",
			"Manage user identities and roles",
		}
	case diagram.External:
		return []string{
			"Provide a capability the system does not build itself",
			"Be reached only through a dedicated adapter module",
		}
	case diagram.Background:
		return []string{
			"Process asynchronous jobs outside the request path",
			"Retry transient failures with backoff",
			"Report job outcomes so failures are visible",
		}
	}
	return nil
}

// AntiResponsibilities returns what a component of type t must never do.
func AntiResponsibilities(t diagram.ComponentType) []string {
	switch t {
	case diagram.Frontend:
		return []string{
			"Access storage directly",
			"Embed secrets or provider API keys",
			"Duplicate business rules that belong to the backend",
		}
	case diagram.Backend:
		return []string{
			"Render UI markup",
			"Store session state in process memory",
			"Call external services without timeouts",
		}
	case diagram.Storage:
		return []string{
			"Contain business logic in triggers or stored procedures",
			"Be reachable from the public internet",
		}
	case diagram.Auth:
		return []string{
			"Store passwords in plain text or with reversible encryption",
			"Implement custom cryptography",
		}
	case diagram.External:
		return []string{
			"Leak vendor-specific types into the core domain",
			"Be called from the frontend with privileged credentials",
		}
	case diagram.Background:
		return []string{
			"Block the request path waiting on job completion",
			"Assume a job runs exactly once",
		}
	}
	return nil
}

// TypeGuidance returns type-specific guidance fields for component specs.
func TypeGuidance(t diagram.ComponentType) []Guidance {
	switch t {
	case diagram.Frontend:
		return []Guidance{
			{"State management", "Keep server state in a query cache and local UI state in components."},
			{"Accessibility", "Every interactive element is reachable by keyboard and labelled."},
		}
	case diagram.Backend:
		return []Guidance{
			{"API style", "Version endpoints and document request and response shapes."},
			{"Error format", "Return a machine-readable code plus a human-readable message."},
		}
	case diagram.Storage:
		return []Guidance{
			{"Migrations", "Every schema change ships as a forward-only migration."},
			{"Backups", "Document how data is backed up and restored."},
		}
	case diagram.Auth:
		return []Guidance{
			{"Tokens", "Use short-lived access tokens and rotate refresh tokens."},
			{"Authorization", "Check permissions on the server for every protected action."},
		}
	case diagram.External:
		return []Guidance{
			{"Adapter", "Wrap the vendor SDK behind an interface owned by this project."},
			{"Resilience", "Set timeouts and handle rate limiting explicitly."},
		}
	case diagram.Background:
		return []Guidance{
			{"Idempotency", "Jobs can be retried safely; use idempotency keys for side effects."},
			{"Observability", "Log job start, finish, and failure with the job id."},
		}
	}
	return nil
}

// Checklist returns the type-specific validation checklist items.
func Checklist(t diagram.ComponentType) []string {
	switch t {
	case diagram.Frontend:
		return []string{
			"All views handle loading and error states",
			"No secrets are present in client bundles",
		}
	case diagram.Backend:
		return []string{
			"Every endpoint validates its input",
			"Errors use the shared error format",
		}
	case diagram.Storage:
		return []string{
			"Schema is created by migrations only",
			"Indexes exist for every frequent query",
		}
	case diagram.Auth:
		return []string{
			"Protected routes reject missing or invalid tokens",
			"Credentials are hashed with a vetted algorithm",
		}
	case diagram.External:
		return []string{
			"All calls go through the adapter",
			"Timeouts and failures are handled",
		}
	case diagram.Background:
		return []string{
			"Jobs are idempotent",
			"Failed jobs are retried and then surfaced",
		}
	}
	return nil
}

// StatusTrackerItem closes every component checklist.
const StatusTrackerItem = "STATUS.md updated with this component's progress"

const generalStandard = "General best practices"

// standards maps a lower-cased tech name to its coding standard.
var standards = map[string]string{
	"react":      "Function components with hooks; colocate component, styles, and tests",
	"next.js":    "App Router; server components by default, client components only when needed",
	"vue":        "Composition API with <script setup>; single-file components",
	"svelte":     "Keep stores small; prefer props over global state",
	"typescript": "strict mode on; no implicit any; explicit return types on exports",
	"javascript": "ES modules; lint with ESLint; no implicit globals",
	"node.js":    "Async/await only; no callback APIs; validate env at startup",
	"express":    "Router per resource; centralized error middleware",
	"go":         "gofmt and go vet clean; return errors, never panic across packages",
	"python":     "PEP 8 via ruff; type hints on all public functions",
	"fastapi":    "Pydantic models for every request and response",
	"django":     "Fat models, thin views; migrations committed",
	"rust":       "clippy clean; no unwrap outside tests",
	"java":       "Google Java Style; constructor injection",
	"postgresql": "snake_case identifiers; every table has a primary key and timestamps",
	"postgres":   "snake_case identifiers; every table has a primary key and timestamps",
	"mysql":      "InnoDB tables; utf8mb4 everywhere",
	"mongodb":    "Schema validation on every collection",
	"redis":      "Namespaced keys with explicit TTLs",
	"sqlite":     "WAL mode; foreign keys enabled",
	"tailwind":   "Utility classes only; extract components instead of @apply",
}

// StandardFor returns the coding standard for a tech name, matched exactly
// (case-insensitive), and whether the name was known.
func StandardFor(tech string) (string, bool) {
	s, ok := standards[strings.ToLower(strings.TrimSpace(tech))]
	if !ok {
		return generalStandard, false
	}
	return s, true
}

// Package is a known library suggested for a tech stack.
type Package struct {
	Name    string
	Purpose string
}

type catalogEntry struct {
	token    string
	language string
	pkg      Package
}

// packageCatalog is matched against tech-stack tokens. An empty language
// matches any detected language.
var packageCatalog = []catalogEntry{
	{"react", "", Package{"react", "UI rendering"}},
	{"react", "", Package{"react-dom", "DOM bindings"}},
	{"next.js", "", Package{"next", "React framework"}},
	{"vue", "", Package{"vue", "UI rendering"}},
	{"tailwind", "", Package{"tailwindcss", "Utility-first styling"}},
	{"typescript", "", Package{"typescript", "Static typing"}},
	{"express", "", Package{"express", "HTTP server"}},
	{"express", "", Package{"zod", "Request validation"}},
	{"fastapi", "", Package{"fastapi", "HTTP framework"}},
	{"fastapi", "", Package{"pydantic", "Data validation"}},
	{"fastapi", "", Package{"uvicorn", "ASGI server"}},
	{"django", "", Package{"django", "Web framework"}},
	{"flask", "", Package{"flask", "Web framework"}},
	{"gin", "", Package{"github.com/gin-gonic/gin", "HTTP router"}},
	{"chi", "", Package{"github.com/go-chi/chi/v5", "HTTP router"}},
	{"postgresql", "Go", Package{"github.com/jackc/pgx/v5", "PostgreSQL driver"}},
	{"postgresql", "Python", Package{"psycopg", "PostgreSQL driver"}},
	{"postgresql", "TypeScript", Package{"pg", "PostgreSQL driver"}},
	{"postgres", "Go", Package{"github.com/jackc/pgx/v5", "PostgreSQL driver"}},
	{"postgres", "Python", Package{"psycopg", "PostgreSQL driver"}},
	{"postgres", "TypeScript", Package{"pg", "PostgreSQL driver"}},
	{"prisma", "", Package{"prisma", "ORM and migrations"}},
	{"redis", "Go", Package{"github.com/redis/go-redis/v9", "Redis client"}},
	{"redis", "Python", Package{"redis", "Redis client"}},
	{"redis", "TypeScript", Package{"ioredis", "Redis client"}},
	{"mongodb", "TypeScript", Package{"mongodb", "MongoDB driver"}},
	{"mongodb", "Python", Package{"pymongo", "MongoDB driver"}},
	{"stripe", "TypeScript", Package{"stripe", "Payments API client"}},
	{"stripe", "Python", Package{"stripe", "Payments API client"}},
	{"openai", "TypeScript", Package{"openai", "LLM API client"}},
	{"openai", "Python", Package{"openai", "LLM API client"}},
	{"openai", "Go", Package{"github.com/openai/openai-go", "LLM API client"}},
	{"celery", "", Package{"celery", "Task queue"}},
	{"bullmq", "", Package{"bullmq", "Job queue"}},
	{"auth0", "TypeScript", Package{"@auth0/auth0-react", "Auth SDK"}},
	{"clerk", "TypeScript", Package{"@clerk/clerk-react", "Auth SDK"}},
	{"supabase", "TypeScript", Package{"@supabase/supabase-js", "Supabase client"}},
	{"axum", "", Package{"axum", "HTTP framework"}},
	{"tokio", "", Package{"tokio", "Async runtime"}},
	{"spring", "", Package{"spring-boot-starter-web", "Web framework"}},
}

// languageHints maps tokens to the language they imply, checked in order.
var languageHints = []struct {
	language string
	tokens   []string
}{
	{"Go", []string{"go", "golang", "gin", "chi", "echo", "fiber"}},
	{"Python", []string{"python", "fastapi", "django", "flask", "celery"}},
	{"Rust", []string{"rust", "axum", "actix", "tokio"}},
	{"Java", []string{"java", "spring", "kotlin"}},
	{"TypeScript", []string{"typescript", "javascript", "node.js", "node", "react", "next.js", "vue", "svelte", "express", "nestjs", "bullmq"}},
}

// techTokens splits tech-stack entries into lower-cased tokens. Splitting on
// separators keeps "Django" from matching "go".
func techTokens(stack []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, entry := range stack {
		lower := strings.ToLower(strings.TrimSpace(entry))
		if lower == "" {
			continue
		}
		tokens[lower] = true
		for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
			return r == ' ' || r == ',' || r == '/' || r == '(' || r == ')'
		}) {
			tokens[tok] = true
		}
	}
	return tokens
}

// DetectLanguage guesses the implementation language of a tech stack.
// It returns "" when nothing in the stack implies one.
func DetectLanguage(stack []string) string {
	tokens := techTokens(stack)
	for _, hint := range languageHints {
		for _, tok := range hint.tokens {
			if tokens[tok] {
				return hint.language
			}
		}
	}
	return ""
}

// Dependencies returns catalog packages matching a tech stack, deduplicated
// by package name, in catalog order.
func Dependencies(stack []string) []Package {
	tokens := techTokens(stack)
	language := DetectLanguage(stack)

	seen := make(map[string]bool)
	var out []Package
	for _, entry := range packageCatalog {
		if !tokens[entry.token] {
			continue
		}
		if entry.language != "" && entry.language != language {
			continue
		}
		if seen[entry.pkg.Name] {
			continue
		}
		seen[entry.pkg.Name] = true
		out = append(out, entry.pkg)
	}
	return out
}

// OutOfScopeItem is an architectural concern a user can exclude.
type OutOfScopeItem struct {
	ID        string
	Title     string
	Rationale string
}

var outOfScopeCatalog = []OutOfScopeItem{
	{"caching", "Caching", "Read paths hit the primary store directly. Do not add cache layers or memoization services."},
	{"multi-tenancy", "Multi-tenancy", "The system serves a single tenant. Do not add tenant ids, row-level isolation, or per-tenant config."},
	{"i18n", "Internationalization", "All user-facing text is in one language. Do not add translation frameworks."},
	{"analytics", "Analytics", "No product analytics or tracking pixels are collected."},
	{"realtime", "Real-time updates", "Clients refresh on demand. Do not add websockets or server-sent events."},
	{"payments", "Payments", "No billing or payment flows are built."},
	{"notifications", "Notifications", "No email, SMS, or push notifications are sent."},
	{"search", "Full-text search", "Filtering uses simple queries. Do not add a search engine."},
	{"file-uploads", "File uploads", "Users cannot upload files. Do not add object storage integration."},
	{"admin-panel", "Admin panel", "Administration happens through direct tooling. Do not build an admin UI."},
	{"rate-limiting", "Rate limiting", "No request throttling is implemented at the application layer."},
	{"audit-logging", "Audit logging", "No audit trail of user actions is kept."},
	{"offline", "Offline support", "The frontend requires connectivity. Do not add service workers or local sync."},
}

const genericOutOfScopeRationale = "Explicitly excluded for this project. Do not implement it, even partially."

// OutOfScopeItems returns the known out-of-scope catalog in display order.
func OutOfScopeItems() []OutOfScopeItem {
	out := make([]OutOfScopeItem, len(outOfScopeCatalog))
	copy(out, outOfScopeCatalog)
	return out
}

// LookupOutOfScope resolves an item id. Unknown ids get a generic rationale.
func LookupOutOfScope(id string) OutOfScopeItem {
	for _, item := range outOfScopeCatalog {
		if item.ID == id {
			return item
		}
	}
	return OutOfScopeItem{ID: id, Title: id, Rationale: genericOutOfScopeRationale}
}
