package models

// Status is the grant claim lifecycle state.
type Status string

const (
	StatusInitiated           Status = "INITIATED"
	StatusAccessCodeReceived  Status = "ACCESS_CODE_RECEIVED"
	StatusAccessCodeSubmitted Status = "ACCESS_CODE_SUBMITTED"
	StatusAccessCodeApproved  Status = "ACCESS_CODE_APPROVED"
	StatusRejected            Status = "REJECTED"
	StatusClaimCodeIssued     Status = "CLAIM_CODE_ISSUED"
	StatusFundsRequested      Status = "FUNDS_REQUESTED"
	StatusFundsReceived       Status = "FUNDS_RECEIVED"
	StatusDepositApplied      Status = "DEPOSIT_APPLIED"
	StatusCompleted           Status = "COMPLETED"
	StatusCancelled           Status = "CANCELLED"
	StatusExpired             Status = "EXPIRED"
)

// lifecycleOrder lists every status along the happy path, then the closing ones.
var lifecycleOrder = []Status{
	StatusInitiated,
	StatusAccessCodeReceived,
	StatusAccessCodeSubmitted,
	StatusAccessCodeApproved,
	StatusClaimCodeIssued,
	StatusFundsRequested,
	StatusFundsReceived,
	StatusDepositApplied,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
	StatusExpired,
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusExpired:
		return true
	case StatusInitiated, StatusAccessCodeReceived, StatusAccessCodeSubmitted, StatusAccessCodeApproved,
		StatusClaimCodeIssued, StatusFundsRequested, StatusFundsReceived, StatusDepositApplied:
		return false
	}
	return false
}

func (s Status) IsValid() bool {
	for _, st := range lifecycleOrder {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// deadlineKind says which code expiry bounds a status, if any.
type deadlineKind int

const (
	noDeadline deadlineKind = iota
	accessCodeDeadline
	claimCodeDeadline
)

func (s Status) deadline() deadlineKind {
	switch s {
	case StatusAccessCodeReceived, StatusAccessCodeSubmitted, StatusAccessCodeApproved:
		return accessCodeDeadline
	case StatusClaimCodeIssued, StatusFundsRequested:
		return claimCodeDeadline
	case StatusInitiated, StatusFundsReceived, StatusDepositApplied,
		StatusCompleted, StatusRejected, StatusCancelled, StatusExpired:
		return noDeadline
	}
	return noDeadline
}
