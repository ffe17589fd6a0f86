package health

// Input represents the input for health check endpoint
type Input struct{}

// Output represents the output for health check endpoint
type Output struct {
	Body Response
}

// Response reports liveness of the gateway itself plus reachability of the
// upstream resource server it syncs against.
type Response struct {
	Status   string `json:"status" example:"ok" doc:"Overall health of the service"`
	Upstream string `json:"upstream,omitempty" example:"ok" doc:"Reachability of the upstream resource server"`
}
