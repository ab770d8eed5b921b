// Package oracle defines the request/response contract with the external
// reasoning service that decides, per turn, whether to answer directly or
// to invoke capabilities. The contract is stateless: every call carries the
// full conversation history and capability descriptors, and the response is
// parsed into a tagged Decision variant; free-form provider output is
// never trusted downstream.
//
// Concrete providers live in the anthropic and openai subpackages; Mock is
// a scripted implementation for tests.
package oracle
