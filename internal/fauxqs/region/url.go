package region

import "fmt"

// QueueURLHost builds the host embedded in a queue URL, per spec.md
// §4.7: "sqs.<region>.<host>:<port>"; when configuredHost is empty, the
// request's own authority host is used instead (passed in as
// configuredHost by the caller, which already resolved that fallback).
func QueueURLHost(region, configuredHost string, port int) string {
	if port == 0 || port == 80 || port == 443 {
		return fmt.Sprintf("sqs.%s.%s", region, configuredHost)
	}
	return fmt.Sprintf("sqs.%s.%s:%d", region, configuredHost, port)
}

// QueueURL builds a full queue URL for name in region, served at host.
func QueueURL(scheme, region, configuredHost string, port int, name string) string {
	return fmt.Sprintf("%s://%s/%s/%s", scheme, QueueURLHost(region, configuredHost, port), AccountID, name)
}

// AccountID is the fixed placeholder AWS account id fauxqs reports
// everywhere, since there is no IAM concept.
const AccountID = "000000000000"
