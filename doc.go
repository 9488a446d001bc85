// Package impulse is the root of the gekko3d rigid-body contact solver.
//
// The solver is velocity-level and impulse-based: given contact manifolds
// produced by an external collision pipeline and rigid-body state owned by an
// external store, it computes and iteratively refines the normal and friction
// impulses that keep bodies from sinking into each other while respecting
// restitution and the Coulomb friction limit.
//
// Subpackages:
//
//	wide:     fixed-width lane math used to solve four independent body
//	          pairs as one struct-of-arrays unit
//	contact:  the manifold-side contract. Contact points, materials,
//	          accumulated impulses carried across frames.
//	dynamics: the body-side contract. Rigid-body views, the per-step
//	          velocity delta buffer, integration parameters.
//	solver:   constraint generation, warm starting, the Gauss-Seidel
//	          impulse sweep, and impulse writeback
//
// This package itself only holds what the subpackages share: the Logger
// surface used for optional solver diagnostics.
package impulse
