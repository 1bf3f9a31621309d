// Package nodebook is the composition root of the NodeBook client.
//
// It wires the session manager, which tracks the open knowledge-graph
// documents of one user, to a collaborator that stores and parses them.
// Two collaborators ship with the module: a local directory of CNL
// documents (optionally versioned with git) and a remote NodeBook server
// spoken to over HTTP.
//
// Features:
//
//   - **Multi-document sessions**: open, edit, save, close and switch between graphs.
//   - **Diagram projection**: parsed structures become node/edge diagrams bound to the active document.
//   - **Difficulty-driven layouts**: the user's difficulty tier picks the diagram layout.
//   - **Live refresh**: external edits to clean documents are picked up by the fs watcher.
//
// Usage:
//
//	m, backend, err := nodebook.NewSession(ctx, "./graphs", "alice",
//		nodebook.WithLogger(logger),
//	)
//
//	id, err := m.Create(ctx, "My Graph", "")
//	err = m.UpdateDraft(id, "# Water\n<is_a> Liquid;\n")
//	err = m.Save(ctx, id)
package nodebook
