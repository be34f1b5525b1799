package interfaces

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request with query parameters and headers.
	// Returns the response body as bytes or an error.
	Get(url string, params map[string]string, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Post performs a POST request with a JSON body and headers.
	// Returns the response body as bytes or an error.
	Post(url string, body interface{}, headers map[string]string) ([]byte, error)
}
