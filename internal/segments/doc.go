// Package segments turns silence intervals into kept segments and renders
// them back into one file.
//
// Plan computes the complement of the silent intervals. Extractor cuts each
// segment to its own file in fixed-size concurrent batches, and Concatenate
// joins the files in order through the concat demuxer.
package segments
