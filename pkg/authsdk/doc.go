/*
Package authsdk provides a client SDK for the Quackwell API, and the shared
request, response and error types the server writes.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: public endpoints (register, login, password reset, health)
  - Session: authenticated endpoints (profile, todos, admin listing)

Create an SDKClient and log in to get a Session:

	client := authsdk.NewSDKClient("https://api.example.com")

	session, err := client.Login(ctx, "alice@example.com", "hunter22")
	if err != nil {
		return err
	}

	todos, err := session.ListTodos(ctx)

# Token renewal

A Session sends its access token as a bearer header. When the server answers
401, the Session exchanges its refresh token for a new access token once and
replays the request. Refresh tokens are not rotated by the server, so the
refresh token held by the Session never changes.

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status
and the server's error code:

	_, err := client.Login(ctx, email, password)
	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		// wrong email or password
	}
*/
package authsdk
