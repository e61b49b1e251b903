package common

// GuestOwnerID is the sentinel owner id for unauthenticated, device-local
// data. Guest records have no remote counterpart and never need syncing.
const GuestOwnerID = ""

// AuthHeaderName is the HTTP header used to carry the access token on
// outbound requests to the collection service.
const AuthHeaderName = "Authorization"
