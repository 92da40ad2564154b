// Package template materializes branch workspaces from the shared
// template tree.
//
// Rendering copies the template to the target workspace, substitutes
// {{KEY}} placeholders in the declared text artifacts, renders the
// *.template.* files under .gemini/ to their non-template sibling
// names, and filters the container-group spec down to the requested
// service set. The original template is never modified.
package template
