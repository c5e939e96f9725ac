// Package memory holds the conversation log and its on-disk persistence.
//
// Persistence model:
//   - One JSON document: an ordered array of {"role", "content"} objects.
//   - Roles are "system", "user" and "assistant"; the leading system message is the directive.
//   - The file is rewritten in full after each turn (temp file + rename).
package memory
