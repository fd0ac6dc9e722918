package middlewares

const (
	CtxUsername  = "auth.username"
	CtxRole      = "auth.role"
	CtxRequestID = "request_id"
)
