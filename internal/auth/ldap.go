package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/Goitonthefloor/Kids-Control/config"
)

// LDAP authenticates parents by binding against a directory server with
// the submitted credentials and checking membership in the parent group.
// Bind semantics are the directory's business; this only drives the
// protocol.
type LDAP struct {
	cfg config.LDAPConfig
}

// NewLDAP creates an LDAP bind authenticator.
func NewLDAP(cfg config.LDAPConfig) *LDAP {
	return &LDAP{cfg: cfg}
}

func (a *LDAP) Authenticate(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}

	conn, err := ldap.DialURL(a.cfg.URI)
	if err != nil {
		return false, fmt.Errorf("dial ldap %s: %w", a.cfg.URI, err)
	}
	defer conn.Close()

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: a.cfg.InsecureSkipVerify,
	}
	if err := conn.StartTLS(tlsCfg); err != nil {
		return false, fmt.Errorf("ldap starttls: %w", err)
	}

	upn := fmt.Sprintf("%s@%s", username, a.cfg.Realm)
	if err := conn.Bind(upn, password); err != nil {
		// Wrong credentials are a rejection, not a failure.
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, fmt.Errorf("ldap bind %s: %w", upn, err)
	}

	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(username)),
		[]string{"memberOf"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return false, fmt.Errorf("ldap search %s: %w", username, err)
	}
	if len(res.Entries) == 0 {
		return false, nil
	}

	needle := fmt.Sprintf("CN=%s,", a.cfg.ParentGroupCN)
	for _, group := range res.Entries[0].GetAttributeValues("memberOf") {
		if strings.HasPrefix(group, needle) {
			return true, nil
		}
	}
	return false, nil
}
