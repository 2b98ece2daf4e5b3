/*
bio-fq2bam converts paired FASTQ files of a spatial transcriptomics run
into an unmapped BAM (or SAM) file. The cell barcode and UMI are cut from
the reads and stored as the CR/CY and UR/UY tags of each record; the
record sequence is the biological part of mate 2.

Sample usage:

	bio-fq2bam \
	    --r1 lane1_R1.fastq.gz,lane2_R1.fastq.gz \
	    --r2 lane1_R2.fastq.gz,lane2_R2.fastq.gz \
	    --sample-id S1 \
	    --mode openst \
	    --output S1.unmapped.bam

With --mode fixed (the default) the barcode is the first --barcode-width
bases of mate 1 and the UMI the following --umi-width bases. With --mode
custom the three regions are given as read{1,2}:{+,-}:start-end, for
example --barcode-pos read1:+:2-30 --umi-pos read2:+:0-9 --read-pos
read2:+:9-end.
*/
package main
