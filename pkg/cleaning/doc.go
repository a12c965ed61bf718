/*
Package cleaning removes observations that carry no usable signal.

Three independent passes live here:

  - Dedup drops rows that repeat every measured field of an earlier row.
    Within a group of identical rows the one with the lowest id survives.
  - Filter drops rows with no active session on either platform and rows
    whose audience is below the floor on both platforms.
  - Cohort keeps a single group of streamers and everything that refers to
    them.

All three are pure functions over loaded rows; the stage package applies
their results to a snapshot.
*/
package cleaning
