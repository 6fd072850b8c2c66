package chatads

// Request carries one caller message plus optional geo/device context. Empty
// string means the field is absent; absent fields never reach the wire.
type Request struct {
	Message   string
	IP        string
	UserAgent string
	Country   string
	Language  string
}
