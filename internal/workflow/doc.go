// Package workflow models workflow definitions symbolically (states,
// triggers, role-gated transitions) and derives the classification
// predicates the coordinator and approval service rely on. States and
// triggers are resolved once from a definition and compared by value; no
// logic re-parses raw state-name strings.
package workflow
