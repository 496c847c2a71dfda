// Package recoverymethod manages the ways a user can prove their identity
// without the primary credential: security questions, a recovery email and a
// recovery phone.
//
// A user holds at most one method of each type and at most one primary
// method. Adding a method of a type the user already has replaces its
// questions or contact value in place. Setting the primary method runs in a
// single transaction so two primaries are never visible.
//
// Security-question answers are stored only as hashes produced by the hasher
// package.
package recoverymethod
