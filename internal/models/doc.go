// Package models defines the core domain models for splitcore.
//
// # Models
//
//   - Group: participants who share expenses and settle up together
//   - Expense: one receipt, with line items, tax, tip and the participant who paid
//   - LineItem: a receipt line assigned to one or more participants
//   - UserShare: one participant's computed share of an expense
//   - Settlement: a directed transfer that moves a debtor toward zero
//
// # Participants
//
// Participants are identified by ParticipantID, a tagged union of persisted
// participants (owned by the identity subsystem) and ephemeral, session-local
// participants. Ephemeral participants can take part in previews but are never
// recorded in a settlement.
//
// # Design Principles
//
//  1. **Exact money**: every amount is a money.Money in integer minor units
//  2. **No back-pointers**: relationships use ID lookups, never embedded parents
//  3. **Superseded, not patched**: an expense's shares are recomputed as a whole
//     whenever its items or assignments change
//  4. **Terminal payments**: a paid settlement is never edited again
package models
