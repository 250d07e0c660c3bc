package credential

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// credentialsTokenSource delegates the same exchange to the standard
// two-legged JWT config from golang.org/x/oauth2.
func credentialsTokenSource(ctx context.Context, creds Credentials, opts Options) oauth2.TokenSource {
	conf := &jwt.Config{
		Email:      creds.Email,
		PrivateKey: []byte(creds.PrivateKey),
		Scopes:     []string{PubSubScope},
		TokenURL:   opts.TokenURL,
		Subject:    creds.Subject(),
	}
	ctx = context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, opts.HTTPClient)
	return conf.TokenSource(ctx)
}
