// Package grievance contains the Grievance bounded context.
// A grievance is a civic complaint mailed to an authority on behalf of a
// citizen. The record becomes visible only once the mail has been handed to
// the transport, and afterwards only its status can change.
package grievance
