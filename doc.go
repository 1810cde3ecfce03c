// Package unitecms implements pluggable identity workflows for a
// multi-tenant content platform: confirmed email changes, confirmed
// password resets, and credential verification, all configured per user
// type through schema directives.
//
// The engine holds no workflow state of its own. Pending changes live as
// signed tokens stored on the user record, so any replica can confirm a
// token issued by another. Hosts supply a UserRepository (with
// compare-and-swap persistence), a NotificationSender, and a
// FieldValidator; the schema package validates type definitions and
// resolves directive policies.
//
//	ix, _ := schema.Build(defs)
//	engine, err := unitecms.New().
//		WithSigningKey(key).
//		WithSchema(ix).
//		WithUserRepository(store).
//		WithNotificationSender(mailer).
//		WithFieldValidator(validator).
//		Build()
package unitecms
