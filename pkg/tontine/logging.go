package tontine

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing operation.
type OperationLog struct {
	Operation string
	UserID    UserID
	GroupID   GroupID
	TargetID  UserID
	Amount    Amount
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithNotifier replaces the default store-backed notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithPasswordHasher replaces the default bcrypt hasher.
func WithPasswordHasher(hasher PasswordHasher) ServiceOption {
	return func(service *Service) {
		service.hasher = hasher
	}
}

// WithLimits overrides the creation and membership quotas.
func WithLimits(limits Limits) ServiceOption {
	return func(service *Service) {
		service.limits = limits
	}
}

// WithTokenGenerator overrides how access tokens and transaction ids are minted.
func WithTokenGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.newToken = generate
	}
}
