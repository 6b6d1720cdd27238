package accounts

import (
	"context"
)

// ContextEnricherAdapter stores the verified Principal in the standard
// context so services can read it through PrincipalFromContext.
func ContextEnricherAdapter(ctx context.Context, principal Principal) context.Context {
	if principal.IsZero() {
		return ctx
	}
	return WithPrincipal(ctx, principal)
}
