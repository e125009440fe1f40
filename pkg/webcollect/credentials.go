package webcollect

import (
	"encoding/base64"
	"fmt"
)

// Mode selects which key pair of a merchant account is used.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// Credentials is the key pair active for one call. The secret key is only ever
// read by authorization.
type Credentials struct {
	Mode           Mode
	PublishableKey string
	SecretKey      string
}

func (c Credentials) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.SecretKey+":"))
}

// String never includes the secret key, so Credentials is safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("%s(%s)", c.Mode, c.PublishableKey)
}

// GoString keeps %#v from printing the secret key as well.
func (c Credentials) GoString() string {
	return c.String()
}
