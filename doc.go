// Package users implements the authentication and user-lifecycle core of a
// small user-management web service: credential verification, access and
// reset token issuance, role and status based authorization, and a
// transactional user repository with email uniqueness.
//
// Transport handlers for the JSON API and the HTML surface live in this
// package as well; rendering, mail delivery and the database engine are
// collaborators injected through the MailSink, UserStore and PasswordHasher
// ports.
package users
