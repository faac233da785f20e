package domain

import (
	"net/url"
	"strings"
)

// ConnectionDetails derives player URLs for an account. No network I/O.
func ConnectionDetails(host, username, password string) Credentials {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	query := url.Values{}
	query.Set("username", username)
	query.Set("password", password)
	auth := query.Encode()

	return Credentials{
		Username:  username,
		Password:  password,
		Host:      host,
		M3UURL:    host + "/get.php?" + auth + "&type=m3u_plus&output=ts",
		XtreamURL: host + "/player_api.php?" + auth,
		EPGURL:    host + "/xmltv.php?" + auth,
	}
}

// CredentialsFromResult fills the URL templates from a provisioning result.
// The result's DNS link wins over defaultHost when present.
func CredentialsFromResult(defaultHost string, result Result) Credentials {
	host := result.DNSLink
	if strings.TrimSpace(host) == "" {
		host = defaultHost
	}
	creds := ConnectionDetails(host, result.Username, result.Password)
	creds.Source = result.Source
	creds.ProviderSubscriptionID = result.ProviderSubscriptionID
	creds.ExpiresAt = result.ExpiresAt
	creds.Plan = result.Plan.Name
	return creds
}
