package consts

const (
	UserSimpleInfoKey = "user:simple:info:"
	IMDailyMetricKey  = "im:metrics:daily:"
)

const (
	TokenBlacklistPrefix = "token:blacklist:"
)
