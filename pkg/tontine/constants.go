package tontine

const (
	operationRegister            = "register"
	operationUpdateProfile       = "update_profile"
	operationSubscribe           = "subscribe"
	operationCreateGroup         = "create_group"
	operationUpdateGroup         = "update_group"
	operationDeleteGroup         = "delete_group"
	operationJoinGroup           = "join_group"
	operationRequestJoin         = "request_join"
	operationHandleRequest       = "handle_request"
	operationAddParticipant      = "add_participant"
	operationRemoveParticipant   = "remove_participant"
	operationReplaceParticipant  = "replace_participant"
	operationRecordPayment       = "record_payment"
	operationUpdatePaymentStatus = "update_payment_status"
	operationDistributeFunds     = "distribute_funds"
	operationPayoutRound         = "payout_round"
	operationPaymentReminder     = "payment_reminder"
	operationSendMessage         = "send_message"
	operationBroadcast           = "broadcast"
	operationNotify              = "notify"
	operationRecordActivity      = "record_activity"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorSubjectBalance   = "balance"
	errorCodeNegative     = "negative_current"
	errorCodeOverflow     = "total_overflow"

	transactionPrefixSimulation = "sim_"
	transactionPrefixManual     = "manual_"

	defaultFreeCreationLimit      = 5
	defaultPremiumCreationLimit   = 100
	defaultFreeMembershipLimit    = 5
	defaultPremiumMembershipLimit = 100

	notificationListLimit = 50
	conversationListLimit = 100

	// maxAmount caps any single amount in XOF.
	maxAmount = 1_000_000_000_000
	// maxLedgerTotal caps the running totals of a group or an organizer.
	maxLedgerTotal = 1_000_000_000_000_000
)
