package greeting

// Greeting is the static payload served at the API root.
type Greeting struct {
	Hello string `json:"Hello" doc:"Greeting target" example:"World"`
}

// GetOutput is the response wrapper for GET /.
type GetOutput struct {
	Body Greeting
}
