package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"

	FieldAccountID   = "account_id"
	FieldUsername    = "username"
	FieldExpenseID   = "expense_id"
	FieldOwnerID     = "owner_id"
	FieldCategory    = "category"
	FieldTotal       = "total"
	FieldPage        = "page"
	FieldPageSize    = "page_size"
	FieldDescription = "description"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentStorage    = "storage"
	ComponentClassifier = "classifier"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpRegister     = "register"
	OpAuthenticate = "authenticate"
	OpCreate       = "create"
	OpRead         = "read"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpList         = "list"
	OpClassify     = "classify"
	OpRefresh      = "refresh"
	OpStartup      = "startup"
	OpShutdown     = "shutdown"
)
