package protocol

import "io"

// Banner is the startup text written once before the boot checks.
type Banner struct {
	Product string
	Version string
	Build   string
}

// WriteBanner writes each non-empty banner line followed by CRLF.
func WriteBanner(w io.Writer, b Banner) error {
	lines := [...]string{b.Product, b.Version, b.Build}
	for _, l := range lines {
		if l == "" {
			continue
		}
		if _, err := io.WriteString(w, l+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}
