package web

import (
	"fmt"
	"net/url"
)

const registeredPage = `<html>
<head><title>Registered</title></head>
<body>
<h1>Account created</h1>
<p>Your account is ready. Go back and log in.</p>
</body>
</html>`

const alreadyExistsPage = `<html>
<head><title>Already registered</title></head>
<body>
<h1>That name or email is taken</h1>
<p>Pick a different display name or email address.</p>
</body>
</html>`

const loginFailedPage = `<html>
<head><title>Login failed</title></head>
<body>
<h1>Wrong name or password</h1>
<p>Check your details and try again.</p>
</body>
</html>`

// loaderPage embeds the flash client with the player's credentials in
// the query string, which is the only channel the legacy client reads
// them from.
func loaderPage(dname, snum string) string {
	q := url.Values{}
	q.Set("dname", dname)
	q.Set("snum", snum)
	q.Set("net", "M")
	src := clientPath + "?" + q.Encode()
	return fmt.Sprintf(`<html>
<head><title>Game</title></head>
<body style="margin:0;padding:0;background:#000;overflow:hidden;">
<object width="100%%" height="100%%">
<param name="movie" value="%[1]s"/>
<param name="quality" value="high"/>
<param name="scale" value="exactfit"/>
<embed src="%[1]s" width="100%%" height="100%%" quality="high" scale="exactfit"/>
</object>
</body>
</html>`, src)
}
