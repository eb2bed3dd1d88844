// Package identity is the gateway's client for the internal IdentityService
// (user.IdentityService/GetUserContext). It speaks the protobuf wire format
// directly and maps the response into a models.UserContext.
package identity
